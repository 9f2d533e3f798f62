package mockbackend

const StreamHistory = streamHistory

// FreeBuffers is how many capture buffers s currently holds unused.
func FreeBuffers(s *Stream) int { return s.pool.available() }
