// Package cvbackend provides the OpenCV vision backend. It is compiled only
// with the gocv build tag; without it the registered factory reports the
// backend as unavailable.
package cvbackend

// Name is the registry name of the OpenCV backend.
const Name = "opencv"
