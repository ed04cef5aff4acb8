package latex

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
)

// CountPages returns the number of pages in a PDF document. The page tree is
// read in-process; pdfinfo and then ghostscript are used as fallbacks for
// files the parser rejects.
func CountPages(ctx context.Context, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, &Error{Message: "empty PDF"}
	}

	count, parseErr := countPagesWithPageTree(data)
	if parseErr == nil {
		return count, nil
	}

	path, cleanup, err := writeTempPDF(data)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	if count, err := countPagesWithPdfinfo(ctx, path); err == nil {
		return count, nil
	}
	if count, err := countPagesWithGhostscript(ctx, path); err == nil {
		return count, nil
	}

	return 0, &Error{
		Message: "failed to count PDF pages: page tree unreadable and neither pdfinfo nor ghostscript succeeded",
		Cause:   parseErr,
	}
}

// countPagesWithPageTree reads /Count from the document's root page tree node
func countPagesWithPageTree(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("parse PDF: %w", err)
	}
	defer r.Close()

	n, err := pagetree.NumPages(r)
	if err != nil {
		return 0, fmt.Errorf("read page tree: %w", err)
	}
	return n, nil
}

func writeTempPDF(data []byte) (string, func(), error) {
	dir, err := os.MkdirTemp("", "latex-pages-*")
	if err != nil {
		return "", nil, &Error{Message: "failed to create temporary directory", Cause: err}
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		cleanup()
		return "", nil, &Error{Message: "failed to write temporary PDF", Cause: err}
	}
	return path, cleanup, nil
}

// countPagesWithPdfinfo uses pdfinfo to count PDF pages
func countPagesWithPdfinfo(ctx context.Context, pdfPath string) (int, error) {
	output, err := exec.CommandContext(ctx, "pdfinfo", pdfPath).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo command failed: %w", err)
	}
	return parsePdfinfoPages(string(output))
}

func parsePdfinfoPages(output string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			if count, err := strconv.Atoi(parts[1]); err == nil {
				return count, nil
			}
		}
	}
	return 0, fmt.Errorf("could not parse page count from pdfinfo output")
}

// countPagesWithGhostscript uses ghostscript to count PDF pages
func countPagesWithGhostscript(ctx context.Context, pdfPath string) (int, error) {
	script := fmt.Sprintf("(%s) (r) file runpdfbegin pdfpagecount = quit", pdfPath)
	output, err := exec.CommandContext(ctx, "gs", "-q", "-dNODISPLAY", "-dNOSAFER", "-c", script).Output()
	if err != nil {
		return 0, fmt.Errorf("ghostscript command failed: %w", err)
	}

	outputStr := strings.TrimSpace(string(output))
	count, err := strconv.Atoi(outputStr)
	if err != nil {
		return 0, fmt.Errorf("could not parse page count from ghostscript output: %s", outputStr)
	}
	return count, nil
}
