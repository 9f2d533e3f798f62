// Package rawlog records captured frames to disk and reads them back.
//
// A file is the magic string followed by records. Each record is a 12
// byte little endian header, the wall clock time it was written in unix
// nanoseconds and the payload length, then a CBOR encoded Record.
package rawlog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/xerror"
)

const (
	magic      = "CAMRAW01"
	headerSize = 12
	// maxPayload rejects corrupt length fields before allocating.
	maxPayload = 256 << 20
)

var (
	ErrBadMagic     = xerror.New("not a camerastream raw log")
	ErrWriterClosed = xerror.New("raw log writer is closed")
	ErrCorrupt      = xerror.New("corrupt raw log record")
)

// Plane is one stored plane of a frame.
type Plane struct {
	Stride int    `cbor:"stride"`
	Data   []byte `cbor:"data"`
}

// Record is one captured frame.
type Record struct {
	Device      string        `cbor:"device"`
	Seq         uint64        `cbor:"seq"`
	Timestamp   time.Duration `cbor:"ts"`
	PixelFormat string        `cbor:"format"`
	Width       uint32        `cbor:"width"`
	Height      uint32        `cbor:"height"`
	Planes      []Plane       `cbor:"planes"`
}

// Frame rebuilds a caller owned frame from the record.
func (r Record) Frame() (*camera.OwnedFrame, error) {
	format, err := camera.ParsePixelFormat(r.PixelFormat)
	if err != nil {
		return nil, err
	}
	f := &camera.OwnedFrame{
		Format: format,
		Dim:    camera.Size{Width: r.Width, Height: r.Height},
		At:     r.Timestamp,
		Data:   make([]camera.Plane, len(r.Planes)),
	}
	for i, p := range r.Planes {
		f.Data[i] = camera.Plane{Data: p.Data, Stride: p.Stride}
	}
	return f, nil
}

// Entry is a record with the time it was written.
type Entry struct {
	Written time.Time
	Size    int
	Record  Record
}

// Writer appends frames to a raw log. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	c   io.Closer
	w   *bufio.Writer
	seq uint64
	now func() time.Time
}

const nameLayout = "20060102_150405.000"

// CreatedAt parses the creation time from a file name made by Create.
func CreatedAt(name string) (time.Time, bool) {
	name = filepath.Base(name)
	if len(name) <= len(nameLayout) || filepath.Ext(name) != ".bin" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(nameLayout, name[:len(nameLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Create opens a new timestamped log file under dir.
func Create(fs afero.Fs, dir, prefix string) (*Writer, string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, "", xerror.Errorf("unable to create raw log dir: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("%s_%s.bin", time.Now().Format(nameLayout), prefix))
	f, err := fs.Create(name)
	if err != nil {
		return nil, "", xerror.Errorf("unable to create raw log file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	return w, name, nil
}

// NewWriter writes the magic to w straight away. w is closed by Close
// if it is an io.Closer.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 1<<20)
	if _, err := bw.WriteString(magic); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	c, _ := w.(io.Closer)
	return &Writer{c: c, w: bw, now: time.Now}, nil
}

// WriteFrame encodes f. It only reads the planes so it may be called
// from inside a frame handler.
func (w *Writer) WriteFrame(device string, f camera.Frame) error {
	planes := f.Planes()
	if planes == nil {
		return xerror.Errorf("%w: frame is no longer valid", camera.ErrInvalidFrame)
	}

	rec := Record{
		Device:      device,
		Timestamp:   f.Timestamp(),
		PixelFormat: f.PixelFormat().String(),
		Width:       f.Size().Width,
		Height:      f.Size().Height,
		Planes:      make([]Plane, len(planes)),
	}
	for i, p := range planes {
		rec.Planes[i] = Plane{Stride: p.Stride, Data: p.Data}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return ErrWriterClosed
	}
	rec.Seq = w.seq
	payload, err := cbor.Marshal(rec)
	if err != nil {
		return xerror.Errorf("unable to encode frame record: %w", err)
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(w.now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(payload)))
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	w.seq++
	return w.w.Flush()
}

// Count is the number of frames written so far.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	w.w = nil
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader walks the records of a raw log.
type Reader struct {
	r io.Reader
	c io.Closer
}

// Open opens the log at path for reading.
func Open(fs afero.Fs, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, xerror.Errorf("unable to open raw log: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.c = f
	return r, nil
}

// NewReader checks the magic and positions r at the first record.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMagic, err)
	}
	if string(head) != magic {
		return nil, xerror.Errorf("%w: found %q", ErrBadMagic, head)
	}
	return &Reader{r: br}, nil
}

// Next returns the following record, io.EOF once the log is exhausted.
// A record cut short by a crash reports io.ErrUnexpectedEOF.
func (r *Reader) Next() (Entry, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return Entry{}, err
	}
	written := time.Unix(0, int64(binary.LittleEndian.Uint64(header[:8])))
	size := binary.LittleEndian.Uint32(header[8:])
	if size == 0 || size > maxPayload {
		return Entry{}, xerror.Errorf("%w: payload length %d", ErrCorrupt, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Entry{}, err
	}

	var rec Record
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return Entry{Written: written, Size: int(size), Record: rec}, nil
}

func (r *Reader) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
