package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/assert"
)

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Register", "'Register'"},
		{"S'inscrire", `"S'inscrire"`},
		{`it's "quoted"`, `concat('it', "'", 's "quoted"')`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, xpathLiteral(tt.in))
		})
	}
}

func TestLabelXPath(t *testing.T) {
	got := labelXPath([]string{"S'inscrire", "Register"})

	assert.Equal(t,
		`(//*[self::div or self::button or self::span or self::a]`+
			`[contains(text(), "S'inscrire") or contains(text(), "S`+"’"+`inscrire") or contains(text(), 'Register')])[1]`,
		got)
}

func TestEnabled(t *testing.T) {
	assert.True(t, enabled(&cdp.Node{Attributes: []string{"class", "btn"}}))
	assert.False(t, enabled(&cdp.Node{Attributes: []string{"disabled", ""}}))
	assert.False(t, enabled(&cdp.Node{Attributes: []string{"aria-disabled", "true"}}))
	assert.True(t, enabled(&cdp.Node{Attributes: []string{"aria-disabled", "false"}}))
}

func TestOptions_NavigateTimeout(t *testing.T) {
	assert.Equal(t, DefaultNavigateTimeout, Options{}.navigateTimeout())
	assert.Equal(t, DefaultNavigateTimeout, Options{NavigateTimeout: -time.Second}.navigateTimeout())
	assert.Equal(t, 45*time.Second, Options{NavigateTimeout: 45 * time.Second}.navigateTimeout())
}
