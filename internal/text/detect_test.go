package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		in   string
		want LanguageTag
	}{
		{"Hello World 123", English},
		{"Sugar, salt, water. Net wt 200g/7oz - keep dry", English},
		{"line one\nline two", English},
		{"안녕하세요", Korean},
		{"원재료명: 정제수, 설탕 100%", Korean},
		{"你好世界", Chinese},
		{"配料：水、白砂糖", Chinese},
		{"こんにちは", MixedAsian},
		{"原材料名 カタカナ", MixedAsian},
		{"한국 中国", MixedAsian},
		{"Hello, World!", Unknown},
		{"Größe", Unknown},
		{"", Unknown},
		{"   \n\t", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.in))
		})
	}
}

func TestLanguageTag_BCP47(t *testing.T) {
	assert.Equal(t, language.English, English.BCP47())
	assert.Equal(t, language.Korean, Korean.BCP47())
	assert.Equal(t, language.Chinese, Chinese.BCP47())
	assert.Equal(t, language.Und, MixedAsian.BCP47())
	assert.Equal(t, language.Und, Unknown.BCP47())
}
