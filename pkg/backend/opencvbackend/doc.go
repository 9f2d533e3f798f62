// Package opencvbackend captures through OpenCV's VideoCapture. It needs
// cgo and an OpenCV install so it is only built with the opencv build tag.
package opencvbackend
