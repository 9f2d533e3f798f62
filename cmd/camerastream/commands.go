package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/rawlog"
	"github.com/tauraamui/xerror"
)

var fs = afero.NewOsFs()

// captureGrace is how long a capture may run past its expected length.
const captureGrace = 5 * time.Second

func runCameraCommand(command string, m camera.Manager, out io.Writer, args []string) (string, error) {
	switch command {
	case "list":
		return list(m, out)
	case "formats":
		return formats(m, out, args)
	case "capture":
		return capture(m, out, args)
	}
	return "", xerror.Errorf("unknown command %q", command)
}

func list(m camera.Manager, out io.Writer) (string, error) {
	def, hasDefault, err := m.DefaultDevice()
	if err != nil {
		return "", err
	}
	devices, err := m.EnumerateDevices()
	if err != nil {
		return "", err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	n := 0
	for d := range devices.All() {
		marker := " "
		if hasDefault && d.ID() == def.ID() {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", marker, d.ID(), d.Name())
		n++
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d camera(s) found", n), nil
}

func findDevice(m camera.Manager, args []string) (camera.Device, error) {
	if len(args) == 0 {
		return nil, xerror.New("missing device id")
	}
	dev, ok, err := camera.FindDevice(m, args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerror.Errorf("no camera with id %s", args[0])
	}
	return dev, nil
}

func formats(m camera.Manager, out io.Writer, args []string) (string, error) {
	dev, err := findDevice(m, args)
	if err != nil {
		return "", err
	}
	descs, err := dev.SupportedFormats()
	if err != nil {
		return "", err
	}
	n := 0
	for d := range descs.All() {
		fmt.Fprintln(out, d)
		n++
	}
	return fmt.Sprintf("%d format(s) offered by %s", n, dev.Name()), nil
}

type captureArgs struct {
	cfg    camera.StreamConfig
	frames int
	out    string
}

func parseCaptureArgs(args []string) (captureArgs, error) {
	const usage = "usage: capture <device-id> <format> <WxH> <fps> <frames> [out]"
	if len(args) < 5 {
		return captureArgs{}, xerror.New(usage)
	}
	format, err := camera.ParsePixelFormat(args[1])
	if err != nil {
		return captureArgs{}, err
	}
	var size camera.Size
	if _, err := fmt.Sscanf(strings.ToLower(args[2]), "%dx%d", &size.Width, &size.Height); err != nil || size.IsZero() {
		return captureArgs{}, xerror.Errorf("invalid size %q: %s", args[2], usage)
	}
	fps, err := strconv.ParseFloat(args[3], 64)
	if err != nil || fps <= 0 {
		return captureArgs{}, xerror.Errorf("invalid frame rate %q: %s", args[3], usage)
	}
	frames, err := strconv.Atoi(args[4])
	if err != nil || frames < 1 {
		return captureArgs{}, xerror.Errorf("invalid frame count %q: %s", args[4], usage)
	}
	ca := captureArgs{
		cfg:    camera.StreamConfig{PixelFormat: format, Size: size, FrameRate: camera.FPS(fps)},
		frames: frames,
	}
	if len(args) > 5 {
		ca.out = args[5]
	}
	return ca, nil
}

func capture(m camera.Manager, out io.Writer, args []string) (string, error) {
	dev, err := findDevice(m, args)
	if err != nil {
		return "", err
	}
	ca, err := parseCaptureArgs(args)
	if err != nil {
		return "", err
	}

	var recorder *rawlog.Writer
	if len(ca.out) > 0 {
		f, err := fs.Create(ca.out)
		if err != nil {
			return "", xerror.Errorf("unable to create %s: %w", ca.out, err)
		}
		if recorder, err = rawlog.NewWriter(f); err != nil {
			f.Close()
			return "", err
		}
		defer recorder.Close()
	}

	stream, err := dev.Open(ca.cfg)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var (
		seen     atomic.Int64
		done     = make(chan struct{})
		once     sync.Once
		mu       sync.Mutex
		writeErr error
	)
	err = stream.Start(func(f camera.Frame) {
		n := seen.Add(1)
		if int(n) > ca.frames {
			return
		}
		mu.Lock()
		printFrame(out, int(n), f.Timestamp(), f.PixelFormat(), f.Size(), f.Planes())
		if recorder != nil && writeErr == nil {
			writeErr = recorder.WriteFrame(dev.ID(), f)
		}
		mu.Unlock()
		if int(n) == ca.frames {
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		return "", err
	}

	timeout := time.Duration(float64(ca.frames)/ca.cfg.FrameRate.Float64()*float64(time.Second)) + captureGrace
	select {
	case <-done:
	case <-time.After(timeout):
	}
	if err := stream.Stop(); err != nil {
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		return "", writeErr
	}
	got := min(int(seen.Load()), ca.frames)
	if got < ca.frames {
		if se, ok := stream.(interface{ Err() error }); ok && se.Err() != nil {
			return "", se.Err()
		}
		return "", xerror.Errorf("captured %d of %d frames before timing out", got, ca.frames)
	}
	return fmt.Sprintf("Captured %d frame(s) from %s", got, dev.Name()), nil
}

func printFrame(out io.Writer, n int, ts time.Duration, format camera.PixelFormat, size camera.Size, planes []camera.Plane) {
	var sb strings.Builder
	for i, p := range planes {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "[%d bytes stride %d]", len(p.Data), p.Stride)
	}
	fmt.Fprintf(out, "#%d %s %s %s %s\n", n, ts, format, size, sb.String())
}

func dump(out io.Writer, args []string) (string, error) {
	if len(args) == 0 {
		return "", xerror.New("usage: dump <file>")
	}
	r, err := rawlog.Open(fs, args[0])
	if err != nil {
		return "", err
	}
	defer r.Close()

	n := 0
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		frame, err := e.Record.Frame()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(out, "%s %s ", e.Written.Format(time.RFC3339Nano), e.Record.Device)
		printFrame(out, int(e.Record.Seq)+1, frame.Timestamp(), frame.PixelFormat(), frame.Size(), frame.Planes())
		n++
	}
	return fmt.Sprintf("%d record(s) in %s", n, args[0]), nil
}
