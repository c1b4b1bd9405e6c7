package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProcessedItem(t *testing.T) {
	item := NewProcessedItem("ferrari-296-gt3", "spa-francorchamps", "ts_spa_sR", "/out/ferrari-296-gt3/spa-francorchamps/ts_spa_sR", "https://example.test/setups/1")

	assert.Equal(t, "ferrari 296 gt3 - spa francorchamps", item.Name)
	assert.Equal(t, "ferrari 296 gt3", item.Car)
	assert.Equal(t, "spa francorchamps", item.Track)
	assert.Equal(t, "ferrari-296-gt3", item.Category1)
	assert.Equal(t, "spa-francorchamps", item.Category2)
}

func TestRunResult(t *testing.T) {
	r := &RunResult{}
	assert.True(t, r.NothingFound())
	assert.Empty(t, r.FailedLinks())

	r.Found = 2
	r.Failed = []Failure{{Link: "a"}, {Link: "b"}}
	assert.False(t, r.NothingFound())
	assert.Equal(t, []string{"a", "b"}, r.FailedLinks())
}
