package decode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Format names accepted by NewZXing.
const (
	FormatQR   = "qr"
	FormatOneD = "1d"
)

// ZXing decodes QR codes and, optionally, 1-D barcodes with gozxing.
// Readers are not safe for concurrent use so Decode serialises callers.
type ZXing struct {
	mu      sync.Mutex
	readers []namedReader
	hints   map[gozxing.DecodeHintType]interface{}
}

type namedReader struct {
	format string
	reader gozxing.Reader
}

// NewZXing builds a decoder for formats ("qr", "1d"). An empty list means QR only.
func NewZXing(formats []string, tryHarder bool) (*ZXing, error) {
	hints := map[gozxing.DecodeHintType]interface{}{}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if len(formats) == 0 {
		formats = []string{FormatQR}
	}
	z := &ZXing{hints: hints}
	seen := map[string]bool{}
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if seen[f] {
			continue
		}
		seen[f] = true
		switch f {
		case FormatQR:
			z.readers = append(z.readers, namedReader{FormatQR, qrcode.NewQRCodeReader()})
		case FormatOneD:
			z.readers = append(z.readers,
				namedReader{"upc/ean", oned.NewMultiFormatUPCEANReader(hints)},
				namedReader{"code128", oned.NewCode128Reader()},
				namedReader{"code39", oned.NewCode39Reader()},
				namedReader{"code93", oned.NewCode93Reader()},
				namedReader{"itf", oned.NewITFReader()},
				namedReader{"codabar", oned.NewCodaBarReader()},
			)
		default:
			return nil, fmt.Errorf("decode: unsupported format %q", f)
		}
	}
	return z, nil
}

// Decode tries each configured reader in order. NotFound means every reader
// reported no code; checksum and format faults are decoder errors.
func (z *ZXing) Decode(ctx context.Context, img image.Image) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	if img == nil {
		return Failed(errors.New("decode: nil image"))
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Failed(fmt.Errorf("decode: binarize: %w", err))
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	var failure error
	for _, r := range z.readers {
		res, err := r.reader.Decode(bmp, z.hints)
		r.reader.Reset()
		if err == nil {
			return FoundText(res.GetText(), res.GetBarcodeFormat().String())
		}
		if isAbsent(err) {
			continue
		}
		failure = errors.Join(failure, fmt.Errorf("decode %s: %w", r.format, err))
	}
	if failure != nil {
		return Failed(failure)
	}
	return Absent()
}

// isAbsent reports gozxing's "no code here" signal.
func isAbsent(err error) bool {
	var nf gozxing.NotFoundException
	return errors.As(err, &nf)
}
