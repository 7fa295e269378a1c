package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"path/filepath"
	"testing"

	"nuttx-foc-go/pkg/config"
	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/log"
	"nuttx-foc-go/pkg/safety"
	"nuttx-foc-go/pkg/sim"
)

func TestRunVariants(t *testing.T) {
	for _, numeric := range []string{config.NumericFloat, config.NumericFixed} {
		t.Run(numeric, func(t *testing.T) {
			fc := config.DefaultFOCConfig()
			fc.Numeric = numeric
			fc.Ticks = 200

			rep, err := run(context.Background(), fc, log.GetLogger("test"))
			if err != nil {
				t.Fatal(err)
			}
			if rep.Ticks != 200 {
				t.Errorf("ticks = %d", rep.Ticks)
			}
		})
	}
}

func TestRunUnknownNumeric(t *testing.T) {
	fc := config.DefaultFOCConfig()
	fc.Numeric = "double"
	if _, err := run(context.Background(), fc, log.GetLogger("test")); err == nil {
		t.Error("expected error")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := run(ctx, config.DefaultFOCConfig(), log.GetLogger("test"))
	if err == nil || rep == nil || rep.Ticks != 0 {
		t.Errorf("run on cancelled context = %v, %+v", err, rep)
	}
}

func TestRunSafetyTrip(t *testing.T) {
	fc := config.DefaultFOCConfig()
	fc.Ticks = 5000
	fc.Safety = &safety.Config{SpeedMax: 20}

	rep, err := run(context.Background(), fc, log.GetLogger("test"))
	if !errors.Is(err, errors.ErrFault) {
		t.Fatalf("run = %v, want fault", err)
	}
	if rep.Ticks >= fc.Ticks {
		t.Errorf("ticks = %d, run was not stopped", rep.Ticks)
	}
}

func TestRealMain(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"ok", []string{"-ticks", "200"}, 0},
		{"help", []string{"-h"}, 0},
		{"bad flag", []string{"-ticks", "many"}, 2},
		{"missing config", []string{"-config", filepath.Join(t.TempDir(), "none.cfg")}, 1},
		{"unknown numeric", []string{"-numeric", "double", "-ticks", "10"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := realMain(tt.args, &out); got != tt.want {
				t.Errorf("exit status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRealMainJSON(t *testing.T) {
	var out bytes.Buffer
	if code := realMain([]string{"-ticks", "200", "-json"}, &out); code != 0 {
		t.Fatalf("exit status = %d", code)
	}
	var rep sim.Report
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out.String())
	}
	if rep.Ticks != 200 {
		t.Errorf("ticks = %d", rep.Ticks)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, stderrors.New("disk full") }

func TestPrintReportErrors(t *testing.T) {
	rep := &sim.Report{Ticks: 10}
	for _, asJSON := range []bool{false, true} {
		if err := printReport(failingWriter{}, rep, asJSON); err == nil {
			t.Errorf("json=%v: write error dropped", asJSON)
		}
	}

	// NaN cannot be encoded as JSON
	var buf bytes.Buffer
	if err := printReport(&buf, &sim.Report{SpeedMean: math.NaN()}, true); err == nil {
		t.Error("encode error dropped")
	}
}
