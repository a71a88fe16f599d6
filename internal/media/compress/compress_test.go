package compress

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

// noisyPNG encodes a PNG full of random pixels so it resists PNG's own
// compression and exceeds the size threshold.
func noisyPNG(t *testing.T, side int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageSkipsSmallInput(t *testing.T) {
	data := noisyPNG(t, 16)
	res := Image(data, "image/png", DefaultOptions(), nil)
	if res.Applied {
		t.Fatal("small input should skip compression")
	}
	if !bytes.Equal(res.Data, data) || res.MimeType != "image/png" {
		t.Fatal("passthrough must return original bytes and mime")
	}
}

func TestImageNeverGrows(t *testing.T) {
	data := noisyPNG(t, 800) // ~1.9MB of noise
	if int64(len(data)) <= DefaultOptions().TargetBytes {
		t.Fatalf("fixture too small: %d bytes", len(data))
	}
	res := Image(data, "image/png", DefaultOptions(), nil)
	if len(res.Data) > len(data) {
		t.Fatalf("compressed size %d exceeds original %d", len(res.Data), len(data))
	}
	if res.Applied && res.MimeType != "image/jpeg" {
		t.Fatalf("applied compression should re-encode as jpeg, got %q", res.MimeType)
	}
}

func TestImageResizesOversizedDimensions(t *testing.T) {
	data := noisyPNG(t, 2400)
	opts := DefaultOptions()
	res := Image(data, "image/png", opts, nil)
	if !res.Applied {
		t.Fatal("expected compression to apply")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode compressed output: %v", err)
	}
	if cfg.Width > opts.MaxDimension || cfg.Height > opts.MaxDimension {
		t.Fatalf("output %dx%d exceeds max dimension %d", cfg.Width, cfg.Height, opts.MaxDimension)
	}
}

func TestImageGarbageInputPassesThrough(t *testing.T) {
	data := bytes.Repeat([]byte{0xde, 0xad}, 1<<20)
	res := Image(data, "image/png", DefaultOptions(), nil)
	if res.Applied {
		t.Fatal("undecodable input must pass through")
	}
	if !bytes.Equal(res.Data, data) {
		t.Fatal("passthrough must preserve bytes")
	}
}
