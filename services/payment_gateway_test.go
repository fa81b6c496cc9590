package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	// Описания платежей строятся на кириллице, обрезка не должна резать
	// символ посередине
	description := "Подписка 'Профессиональный', счет INV-20260830-0001"

	for _, limit := range []int{1, 5, 10, 17, 50} {
		cut := truncate(description, limit)
		assert.LessOrEqual(t, len(cut), limit)
		assert.True(t, utf8.ValidString(cut))
		assert.True(t, strings.HasPrefix(description, cut))
	}
}

func TestTruncateShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "Gudang", truncate("Gudang", 50))
	assert.Equal(t, "", truncate("Ш", 1))
	assert.Equal(t, "Шкаф", truncate("Шкаф", 8))
}
