package games

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"
)

const (
	// DefaultMaxPhotoSize bounds an uploaded frame when Env does not.
	DefaultMaxPhotoSize = 4 << 20
	// MaxPhotoPixels bounds the decoded dimensions of a frame.
	MaxPhotoPixels = 4096 * 4096

	cameraFacingMode   = "user"
	cameraJPEGQuality  = 70
	cameraSnapDelay    = 500 * time.Millisecond
	cameraFlashDelay   = 100 * time.Millisecond
	cameraCaptureDelay = 2200 * time.Millisecond
)

var (
	ErrNotDataURI       = errors.New("photo is not a base64 data URI")
	ErrPhotoTooLarge    = errors.New("photo exceeds maximum size")
	ErrUnsupportedImage = errors.New("photo is not a supported image")
)

// CameraState is the step the capture flow is at.
type CameraState string

const (
	CameraStarting CameraState = "starting"
	CameraReady    CameraState = "ready"
	CameraCapture  CameraState = "capture"
	CameraFlash    CameraState = "flash"
	CameraCaptured CameraState = "captured"
	CameraError    CameraState = "error"
)

const (
	cameraErrorHead = "Camera Access Denied"
	cameraErrorBody = "Please allow camera access to complete check-in"
)

// DecodePhoto parses a base64 image data URI no larger than maxSize bytes
// once decoded.
func DecodePhoto(uri string, maxSize int) (image.Image, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxPhotoSize
	}

	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURI
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > maxSize {
		return nil, ErrPhotoTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}

	// The payload check above says nothing about decoded size.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPhotoPixels/cfg.Height {
		return nil, ErrPhotoTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	return img, nil
}

// EncodePhoto encodes img as a JPEG data URI.
func EncodePhoto(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: cameraJPEGQuality}); err != nil {
		return "", fmt.Errorf("encode photo: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CameraView is drawn by the camera phase.
type CameraView struct {
	Type       string      `json:"type"` // "camera"
	State      CameraState `json:"state"`
	FacingMode string      `json:"facing_mode,omitempty"`
	StopStream bool        `json:"stop_stream,omitempty"`
	Photo      string      `json:"photo,omitempty"`
	Title      string      `json:"title,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Camera takes the check-in photo. The client owns the device; the server
// decides when to capture and validates what comes back.
type Camera struct {
	base
	onCapture func(photo string)
	state     CameraState
	photo     string
	captured  bool
}

// NewCamera returns a camera phase that hands its photo to onCapture.
func NewCamera(env Env, onCapture func(photo string)) *Camera {
	c := &Camera{onCapture: onCapture, state: CameraStarting}
	c.base = newBase(env, nil)

	return c
}

func (c *Camera) Kind() Kind { return KindCamera }

// State returns the current capture state.
func (c *Camera) State() CameraState { return c.state }

func (c *Camera) Render() {
	c.show(CameraView{Type: string(KindCamera), State: CameraStarting, FacingMode: cameraFacingMode})
}

func (c *Camera) Input(in Input) {
	if c.captured || c.state == CameraError {
		return
	}

	switch in.Action {
	case "camera_ready":
		if c.state != CameraStarting || in.Width <= 0 || in.Height <= 0 {
			return
		}
		c.state = CameraReady
		c.after(cameraSnapDelay, func() {
			c.state = CameraCapture
			c.show(CameraView{Type: string(KindCamera), State: CameraCapture})
		})

	case "frame":
		if c.state != CameraCapture {
			return
		}
		c.snap(in.Photo)

	case "camera_error":
		c.fail()
	}
}

func (c *Camera) snap(uri string) {
	img, err := DecodePhoto(uri, c.env.MaxPhotoSize)
	if err != nil {
		c.fail()
		return
	}

	photo, err := EncodePhoto(img)
	if err != nil {
		c.fail()
		return
	}

	c.captured = true
	c.photo = photo
	c.state = CameraFlash
	c.show(CameraView{Type: string(KindCamera), State: CameraFlash, StopStream: true})

	c.after(cameraFlashDelay, func() {
		c.show(CameraView{Type: string(KindCamera), State: CameraCaptured, Photo: c.photo})

		c.after(cameraCaptureDelay, func() {
			c.state = CameraCaptured
			if c.onCapture != nil {
				c.onCapture(c.photo)
			}
		})
	})
}

func (c *Camera) fail() {
	c.Close()
	c.state = CameraError
	c.toast("Camera access required!", "error")
	c.show(CameraView{
		Type:       string(KindCamera),
		State:      CameraError,
		StopStream: true,
		Title:      cameraErrorHead,
		Message:    cameraErrorBody,
	})
}
