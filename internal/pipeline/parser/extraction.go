package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dslipak/pdf"
	"github.com/gabriel-vasile/mimetype"
	"github.com/lu4p/cat"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
)

func extract(ctx context.Context, path string, mtype *mimetype.MIME, sink *emitter) error {
	switch {
	case mtype.Is("application/pdf"):
		return extractPDF(ctx, path, sink)

	case mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"),
		mtype.Is("application/vnd.oasis.opendocument.text"),
		mtype.Is("text/rtf"),
		mtype.Is("application/rtf"):
		return extractWithCat(path, sink)

	case isTextual(mtype):
		return extractPlainText(path, sink)

	default:
		return fmt.Errorf("%w: unparseable document type %s", faults.ErrInvalidInput, mtype.String())
	}
}

func isTextual(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func extractPDF(ctx context.Context, path string, sink *emitter) error {
	f, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open pdf: %v", faults.ErrInvalidInput, err)
	}

	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// a broken page should not sink the rest of the document
			logger.Error("Error parsing page content", "page", i, "error", err)
			continue
		}
		if err := sink.write(content + "\n\n"); err != nil {
			return err
		}
	}
	return nil
}

// File-level extraction for .docx, .odt and .rtf. The library has no
// streaming mode, so the emitter rebounds the text into parent chunks.
func extractWithCat(path string, sink *emitter) error {
	text, err := cat.File(path)
	if err != nil {
		return fmt.Errorf("%w: failed to extract document: %v", faults.ErrInvalidInput, err)
	}
	return sink.write(text)
}

func extractPlainText(path string, sink *emitter) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening document: %v", faults.ErrStorageFailure, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, config.ReadBufferSize)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if writeErr := sink.write(line); writeErr != nil {
				return writeErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading document: %v", faults.ErrStorageFailure, err)
		}
	}
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(config.PageExtractTimeout):
		logger.Error("pageExtract", "timeout")
		return "", errors.New("timeout")
	}
}
