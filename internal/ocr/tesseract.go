//go:build tesseract

package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// RulerChars is the character set printed on metric rulers.
const RulerChars = "0123456789.,cm"

// Engine reads ruler labels with Tesseract.
type Engine struct {
	client *gosseract.Client
	params RulerParams
}

// NewEngine creates a Tesseract-backed label reader.
func NewEngine(params RulerParams) (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Ruler numbers are not words; dictionary correction only hurts.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")
	_ = client.SetVariable("language_model_penalty_non_freq_dict_word", "0")

	return &Engine{client: client, params: params}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ReadLabels recognizes the numbers inside roi. For a tall region every
// quarter-turn is tried and the one yielding the most labels is kept.
func (e *Engine) ReadLabels(img image.Image, roi image.Rectangle) ([]Label, error) {
	roi = roi.Intersect(img.Bounds())
	if roi.Empty() {
		return nil, fmt.Errorf("invalid region bounds")
	}

	var best []Label
	for _, turn := range orientationsFor(roi) {
		p, err := prepare(img, roi, turn, e.params.MinHeight)
		if err != nil {
			return nil, err
		}
		labels, err := e.recognize(p)
		if err != nil {
			return nil, err
		}
		log.Debug().Int("turn", int(turn)).Int("labels", len(labels)).Msg("OCR: ruler pass")
		if len(labels) > len(best) {
			best = labels
		}
	}
	return best, nil
}

func (e *Engine) recognize(p prepared) ([]Label, error) {
	if err := e.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(RulerChars); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(p.png); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	var labels []Label
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		if l, ok := labelFromWord(p, word, box.Box, box.Confidence); ok {
			labels = append(labels, l)
		}
	}
	return labels, nil
}
