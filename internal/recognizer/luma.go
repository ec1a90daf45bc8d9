package recognizer

import (
	"context"
	"errors"

	"github.com/bdougie/mira/internal/analyzer"
	"github.com/bdougie/mira/internal/models"
)

// Luminosity averages the luma slot of a request. It runs in-process and
// needs no model.
var Luminosity analyzer.BackendFunc[models.Luma] = func(ctx context.Context, req *models.RecognitionRequest) (models.Luma, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	y := req.Luma()
	if len(y) == 0 {
		return 0, errors.New("recognizer: empty luma plane")
	}
	var sum uint64
	for _, v := range y {
		sum += uint64(v)
	}
	return models.Luma(float64(sum) / float64(len(y))), nil
}
