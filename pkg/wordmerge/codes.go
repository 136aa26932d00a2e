package wordmerge

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
)

const (
	defaultBarcodeHeight   = 70
	defaultBarcodeBarWidth = 3
	defaultQRCodeSize      = 512
	defaultQRCodeBorder    = 0
)

// CodeStyle sets the colors of a generated code.
type CodeStyle struct {
	Dark  color.Color
	Light color.Color
}

// CodeRenderer draws barcodes and QR codes as PNG images.
type CodeRenderer interface {
	// Barcode draws a Code 128 barcode height pixels tall with bars
	// barWidth pixels wide.
	Barcode(content string, height, barWidth int, style CodeStyle) ([]byte, error)
	// QRCode draws a square QR code of size pixels including a border of
	// border pixels.
	QRCode(content string, size, border int, style CodeStyle) ([]byte, error)
}

// DefaultCodeRenderer draws codes with github.com/boombuler/barcode.
var DefaultCodeRenderer CodeRenderer = barcodeRenderer{}

type barcodeRenderer struct{}

func (barcodeRenderer) Barcode(content string, height, barWidth int, style CodeStyle) ([]byte, error) {
	code, err := code128.Encode(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode barcode: %w", err)
	}
	scaled, err := barcode.Scale(code, code.Bounds().Dx()*barWidth, height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}
	return encodeCode(scaled, 0, style)
}

func (barcodeRenderer) QRCode(content string, size, border int, style CodeStyle) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	inner := size - 2*border
	if inner < code.Bounds().Dx() {
		return nil, fmt.Errorf("QR code size %d is too small", size)
	}
	scaled, err := barcode.Scale(code, inner, inner)
	if err != nil {
		return nil, fmt.Errorf("failed to scale QR code: %w", err)
	}
	return encodeCode(scaled, border, style)
}

// encodeCode paints code onto a canvas in the style's colors, surrounded by
// border pixels of the light color.
func encodeCode(code image.Image, border int, style CodeStyle) ([]byte, error) {
	b := code.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*border, b.Dy()+2*border))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(style.Light), image.Point{}, draw.Src)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g := color.GrayModel.Convert(code.At(x, y)).(color.Gray); g.Y < 128 {
				canvas.Set(x-b.Min.X+border, y-b.Min.Y+border, style.Dark)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseColor reads "#rrggbb", "rrggbb" or "#rgb".
func parseColor(s string) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// codeOptions reads the two size parameters and the optional colors of a
// barcode or qrcode directive.
func codeOptions(params []any, first, second int) (int, int, CodeStyle, error) {
	style := CodeStyle{Dark: color.Black, Light: color.White}
	sizes := []int{first, second}
	for i := 0; i < len(params) && i < 2; i++ {
		if params[i] == nil {
			continue
		}
		n, err := toInt(params[i])
		if err != nil {
			return 0, 0, style, err
		}
		sizes[i] = n
	}
	if len(params) > 2 && params[2] != nil {
		c, err := parseColor(data.String(params[2]))
		if err != nil {
			return 0, 0, style, err
		}
		style.Dark = c
	}
	if len(params) > 3 && params[3] != nil {
		c, err := parseColor(data.String(params[3]))
		if err != nil {
			return 0, 0, style, err
		}
		style.Light = c
	}
	return sizes[0], sizes[1], style, nil
}

func (s *session) insertCode(c *RenderContext, value any, params []any) error {
	content := data.String(value)
	if content == "" {
		return fmt.Errorf("nothing to encode")
	}
	var (
		raw []byte
		err error
	)
	if c.Evaluator.Kind == KindBarcode {
		height, barWidth, style, perr := codeOptions(params, defaultBarcodeHeight, defaultBarcodeBarWidth)
		if perr != nil {
			return perr
		}
		if height <= 0 || barWidth <= 0 {
			return fmt.Errorf("barcode height and bar width must be positive")
		}
		raw, err = s.codes.Barcode(content, height, barWidth, style)
	} else {
		size, border, style, perr := codeOptions(params, defaultQRCodeSize, defaultQRCodeBorder)
		if perr != nil {
			return perr
		}
		if size <= 0 || border < 0 {
			return fmt.Errorf("QR code size must be positive")
		}
		raw, err = s.codes.QRCode(content, size, border, style)
	}
	if err != nil {
		return err
	}
	pic, err := newPicture(raw)
	if err != nil {
		return err
	}
	return s.placePicture(c, pic, 0)
}
