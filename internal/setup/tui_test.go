package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, validatePositive("0.01"))
	assert.Error(t, validatePositive("0"))
	assert.Error(t, validatePositive("abc"))

	assert.NoError(t, validateLeverage("5"))
	assert.Error(t, validateLeverage("0"))
	assert.Error(t, validateLeverage("200"))
	assert.Error(t, validateLeverage("x"))
}
