package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestGeneralEmbedderNetUnlockedAfterPanic(t *testing.T) {
	e := &GeneralEmbedder{}

	assert.Panics(t, func() {
		e.withNet(func(*gocv.Net) gocv.Mat { panic("forward failed") })
	})

	// A panicking forward pass must not leave the net permanently locked.
	assert.True(t, e.mu.TryLock())
	e.mu.Unlock()
}
