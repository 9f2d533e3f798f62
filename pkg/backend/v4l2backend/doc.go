// Package v4l2backend captures from Video4Linux2 devices. It is only
// built on linux, importing it elsewhere registers nothing.
package v4l2backend
