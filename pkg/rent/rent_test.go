package rent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimum(t *testing.T) {
	assert.Equal(t, uint64(890880), Minimum(0), "zero-length account pays the overhead")
	assert.Equal(t, uint64(897840), Minimum(1))

	// Grows linearly with data length.
	assert.Equal(t, Minimum(0)+uint64(100)*3480*2, Minimum(100))
}

func TestRecordSizes(t *testing.T) {
	assert.Equal(t, 80, MarketplaceSize)
	assert.Equal(t, 85, ListingSize)
}
