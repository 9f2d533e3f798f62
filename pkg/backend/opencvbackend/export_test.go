//go:build opencv

package opencvbackend

func OverloadOpenVideoCapture(overload func(source string) (VideoCapturable, error)) func() {
	openVideoCaptureRef := openVideoCapture
	openVideoCapture = overload
	return func() { openVideoCapture = openVideoCaptureRef }
}
