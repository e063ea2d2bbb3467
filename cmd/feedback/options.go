package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bluefermion/marketfeedback/internal/feedback"
)

// contextFlags are the opener-supplied values shared by dialog and submit.
type contextFlags struct {
	feedbackType string
	meta         map[string]string
}

func (f *contextFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.feedbackType, "type", "t", "", "Initial feedback type (user-experience, performance, product-service, transactional)")
	fs.StringToStringVar(&f.meta, "meta", nil, "Context sent with the feedback, e.g. --meta order_id=ord-1")
}

// metaMap returns the meta to pass to Open, with the type hint folded in.
func (f *contextFlags) metaMap() (map[string]any, error) {
	meta := make(map[string]any, len(f.meta)+1)
	for k, v := range f.meta {
		meta[k] = v
	}
	if f.feedbackType != "" {
		t, ok := feedback.ParseType(f.feedbackType)
		if !ok {
			return nil, fmt.Errorf("%w: %q", feedback.ErrInvalidType, f.feedbackType)
		}
		meta["type"] = string(t)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}
