// Package picker models the image picker collaborator as a single-shot call
// returning a tagged result.
package picker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// MediaType restricts what the picker offers.
type MediaType string

const MediaTypePhoto MediaType = "photo"

// Options are passed to every picker invocation.
type Options struct {
	MediaType      MediaType
	SelectionLimit int
}

// PhotoOptions asks for exactly one photo.
func PhotoOptions() Options {
	return Options{MediaType: MediaTypePhoto, SelectionLimit: 1}
}

// Outcome tags a picker Result.
type Outcome int

const (
	OutcomeCancelled Outcome = iota
	OutcomeError
	OutcomeSelected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeError:
		return "error"
	case OutcomeSelected:
		return "selected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Asset is one picked item.
type Asset struct {
	URI      string
	FileName string
}

// Result is what a picker returns: a cancellation, an error or assets.
type Result struct {
	Outcome      Outcome
	ErrorCode    string
	ErrorMessage string
	Assets       []Asset
}

func Cancelled() Result {
	return Result{Outcome: OutcomeCancelled}
}

func Failed(code, message string) Result {
	return Result{Outcome: OutcomeError, ErrorCode: code, ErrorMessage: message}
}

func Selected(assets ...Asset) Result {
	return Result{Outcome: OutcomeSelected, Assets: assets}
}

// First returns the first asset with a usable URI.
func (r Result) First() (Asset, bool) {
	if r.Outcome != OutcomeSelected || len(r.Assets) == 0 || r.Assets[0].URI == "" {
		return Asset{}, false
	}
	return r.Assets[0], true
}

// FromResponse converts a picker response posted by a client. Cancellation
// wins over an error code, which wins over assets.
func FromResponse(resp models.PickerResponse) Result {
	switch {
	case resp.DidCancel:
		return Cancelled()
	case resp.ErrorCode != "":
		return Failed(resp.ErrorCode, resp.ErrorMessage)
	}
	assets := make([]Asset, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		assets = append(assets, Asset{URI: a.URI, FileName: a.FileName})
	}
	return Selected(assets...)
}

// Picker lets the user choose an image.
type Picker interface {
	Pick(ctx context.Context, opts Options) Result
}

// Static returns a result decided ahead of time.
type Static struct {
	Result Result
}

func (s Static) Pick(ctx context.Context, opts Options) Result {
	if ctx.Err() != nil {
		return Cancelled()
	}
	return s.Result
}

// FilePicker picks a file from the local filesystem.
type FilePicker struct {
	Path string
}

// Pick treats an empty path as a cancellation.
func (f FilePicker) Pick(ctx context.Context, opts Options) Result {
	if f.Path == "" || ctx.Err() != nil {
		return Cancelled()
	}

	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return Failed("E_INVALID_PATH", err.Error())
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Failed("E_FILE_NOT_FOUND", fmt.Sprintf("no such file: %s", f.Path))
	case err != nil:
		return Failed("E_FILE_ACCESS", err.Error())
	case info.IsDir():
		return Failed("E_NOT_A_FILE", fmt.Sprintf("%s is a directory", f.Path))
	}

	return Selected(Asset{
		URI:      "file://" + filepath.ToSlash(abs),
		FileName: filepath.Base(abs),
	})
}
