package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFees(t *testing.T) {
	assert.Equal(t, Fees{PlatformFee: 500, ProcessingFee: 329}, ComputeFees(10000))
	assert.Equal(t, Fees{PlatformFee: 0, ProcessingFee: 29}, ComputeFees(0))
}

func TestComputeFeesRounding(t *testing.T) {
	// 5% of 10 = 0.5 rounds up, 3% of 10 = 0.3 + 29 rounds down
	assert.Equal(t, Fees{PlatformFee: 1, ProcessingFee: 29}, ComputeFees(10))
	// 5% of 1234 = 61.7, 3% of 1234 = 37.02 + 29 = 66.02
	assert.Equal(t, Fees{PlatformFee: 62, ProcessingFee: 66}, ComputeFees(1234))
	// 3% of 50 = 1.5 + 29 = 30.5 rounds half up
	assert.Equal(t, int64(31), ComputeFees(50).ProcessingFee)
}

func TestComputeFeesIsDeterministic(t *testing.T) {
	for _, amount := range []int64{1, 99, 12000, 987654321} {
		assert.Equal(t, ComputeFees(amount), ComputeFees(amount))
	}
}

func TestSellerNet(t *testing.T) {
	assert.Equal(t, int64(9500), SellerNet(10000, 500))
	assert.Equal(t, int64(0), SellerNet(10, 50))
	assert.Equal(t, int64(0), SellerNet(0, 0))
}
