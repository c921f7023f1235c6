package apperr_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmap/pkg/utils/apperr"
)

func TestHandle(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	apperr.Handle(ctx, nil)
	gt.Equal(t, buf.Len(), 0)

	apperr.Handle(ctx, goerr.New("store unavailable"))
	gt.S(t, buf.String()).Contains(`"level":"ERROR"`)
	gt.S(t, buf.String()).Contains("store unavailable")

	buf.Reset()
	apperr.Handle(ctx, goerr.Wrap(context.Canceled, "rollup aborted"))
	gt.S(t, buf.String()).Contains(`"level":"WARN"`)
}
