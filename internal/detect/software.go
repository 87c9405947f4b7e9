package detect

import (
	"fmt"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/oned/rss"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// readerFactory builds a fresh gozxing reader; readers keep decode state
// between calls, so one is created per Detect.
type readerFactory struct {
	format Format
	new    func() gozxing.Reader
}

// softwareReaders in trial order. UPC-A precedes EAN-13 so a UPC-A symbol
// is not reported as its 13-digit EAN form. gozxing has no PDF417 reader,
// so FormatPDF417 is accepted in a formats list but never decoded.
var softwareReaders = []readerFactory{
	{FormatQRCode, func() gozxing.Reader { return qrcode.NewQRCodeReader() }},
	{FormatDataMatrix, func() gozxing.Reader { return datamatrix.NewDataMatrixReader() }},
	{FormatUPCA, func() gozxing.Reader { return oned.NewUPCAReader() }},
	{FormatEAN13, func() gozxing.Reader { return oned.NewEAN13Reader() }},
	{FormatEAN8, func() gozxing.Reader { return oned.NewEAN8Reader() }},
	{FormatUPCE, func() gozxing.Reader { return oned.NewUPCEReader() }},
	{FormatCode128, func() gozxing.Reader { return oned.NewCode128Reader() }},
	{FormatCode39, func() gozxing.Reader { return oned.NewCode39Reader() }},
	{FormatCode93, func() gozxing.Reader { return oned.NewCode93Reader() }},
	{FormatCodabar, func() gozxing.Reader { return oned.NewCodaBarReader() }},
	{FormatITF, func() gozxing.Reader { return oned.NewITFReader() }},
	{FormatRSS14, func() gozxing.Reader { return rss.NewRSS14Reader() }},
}

// SoftwareFormats lists the symbologies the software decoder can read.
func SoftwareFormats() []Format {
	out := make([]Format, len(softwareReaders))
	for i, r := range softwareReaders {
		out[i] = r.format
	}
	return out
}

// SoftwareBackend decodes frames with the gozxing readers.
type SoftwareBackend struct {
	id         BackendID
	readers    []readerFactory
	preprocess func(capture.Frame) capture.Frame
}

// NewSoftwareBackend creates the multi-format software decoder. An empty
// formats list enables every supported symbology.
func NewSoftwareBackend(formats []Format) (*SoftwareBackend, error) {
	readers := softwareReaders
	if len(formats) > 0 {
		want := make(map[Format]bool, len(formats))
		for _, f := range formats {
			want[f] = true
		}
		readers = nil
		for _, r := range softwareReaders {
			if want[r.format] {
				readers = append(readers, r)
				delete(want, r.format)
			}
		}
		for f := range want {
			slog.Warn("detect: no software reader for format, ignoring", "format", string(f))
		}
		if len(readers) == 0 {
			return nil, fmt.Errorf("detect: none of the requested formats %v can be decoded (software supports %v)", formats, SoftwareFormats())
		}
	}

	return &SoftwareBackend{id: BackendSoftware, readers: readers}, nil
}

// Binarized returns a variant of the backend that decodes a 50%-luminance
// binarized copy of each frame.
func (b *SoftwareBackend) Binarized() *SoftwareBackend {
	return &SoftwareBackend{
		id:         BackendEnhanced,
		readers:    b.readers,
		preprocess: Binarize,
	}
}

// ID implements Backend.
func (b *SoftwareBackend) ID() BackendID {
	return b.id
}

// Formats returns the symbologies this backend tries, in order.
func (b *SoftwareBackend) Formats() []Format {
	out := make([]Format, len(b.readers))
	for i, r := range b.readers {
		out[i] = r.format
	}
	return out
}

// Detect implements Backend.
func (b *SoftwareBackend) Detect(frame capture.Frame) (Result, error) {
	if b.preprocess != nil {
		frame = b.preprocess(frame)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame.Image())
	if err != nil {
		return Result{}, fmt.Errorf("build bitmap: %w", err)
	}

	// PURE_BARCODE must stay absent: readers test its presence, not its value.
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	for _, rf := range b.readers {
		res, err := rf.new().Decode(bmp, hints)
		if err != nil {
			// NotFound, Checksum and Format exceptions are all misses
			continue
		}
		if text := res.GetText(); text != "" {
			format := formatFromZXing(res.GetBarcodeFormat())
			if format == FormatUnknown {
				format = rf.format
			}
			return Result{
				Kind:   KindMatch,
				Value:  text,
				Format: format,
				Source: b.id,
			}, nil
		}
	}

	return NoMatch(b.id), nil
}
