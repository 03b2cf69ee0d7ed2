package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// TesseractEngine shells out to the tesseract binary. Each client gets its
// own scratch directory so parallel page workers never share files.
type TesseractEngine struct {
	binPath  string
	language string
}

func NewTesseractEngine(binPath, language string) *TesseractEngine {
	if binPath == "" {
		binPath = "tesseract"
	}
	if p, err := exec.LookPath(binPath); err == nil {
		binPath = p
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{binPath: binPath, language: language}
}

func (e *TesseractEngine) Language() string { return e.language }

func (e *TesseractEngine) IsAvailable() bool {
	return exec.Command(e.binPath, "--version").Run() == nil
}

func (e *TesseractEngine) NewClient() (Client, error) {
	dir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &tesseractClient{engine: e, dir: dir}, nil
}

type tesseractClient struct {
	engine *TesseractEngine
	dir    string
	seq    int
}

func (c *tesseractClient) Recognize(ctx context.Context, image []byte) (Result, error) {
	c.seq++
	imgPath := filepath.Join(c.dir, fmt.Sprintf("page-%d.png", c.seq))
	if err := os.WriteFile(imgPath, image, 0o600); err != nil {
		return Result{}, fmt.Errorf("write page image: %w", err)
	}
	defer os.Remove(imgPath)

	// TSV output carries per-word confidences alongside the text.
	cmd := exec.CommandContext(ctx, c.engine.binPath, imgPath, "stdout", "-l", c.engine.language, "tsv")
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: %w", err)
	}

	return parseTSV(string(output)), nil
}

func (c *tesseractClient) Close() error {
	return os.RemoveAll(c.dir)
}

// parseTSV rebuilds line-broken text from tesseract's TSV output and averages
// the per-word confidences. Rows with conf -1 are layout markers, not words.
func parseTSV(output string) Result {
	var (
		text      strings.Builder
		confSum   float64
		confCount int
		lastLine  = -1
	)

	for i, row := range strings.Split(output, "\n") {
		if i == 0 { // header
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}

		lineNum, _ := strconv.Atoi(cols[4])
		if text.Len() > 0 {
			if lineNum != lastLine {
				text.WriteString("\n")
			} else {
				text.WriteString(" ")
			}
		}
		lastLine = lineNum

		text.WriteString(word)
		confSum += conf
		confCount++
	}

	res := Result{Text: text.String()}
	if confCount > 0 {
		res.Confidence = confSum / float64(confCount)
	}
	return res
}
