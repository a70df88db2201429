package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"X-Test: a:b", " Referer :https://example.com "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Test": "a:b", "Referer": "https://example.com"}, h)

	h, err = parseHeaders(nil)
	require.NoError(t, err)
	assert.Nil(t, h)

	_, err = parseHeaders([]string{"no-colon"})
	assert.Error(t, err)
}

func TestIntSliceValue(t *testing.T) {
	var codes []int
	v := &intSliceValue{target: &codes}
	require.NoError(t, v.Set("200, 403,"))
	require.NoError(t, v.Set("404"))
	assert.Equal(t, []int{200, 403, 404}, codes)
	assert.Equal(t, "200,403,404", v.String())

	assert.Error(t, v.Set("abc"))
	assert.Error(t, v.Set("42"))
}

func TestFormatFlag(t *testing.T) {
	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	fs.IntP("concurrency", "c", 10, "Maximum requests in flight")
	fs.Bool("demo", false, "Render a sample report")

	line := formatFlag(fs.Lookup("concurrency"))
	assert.True(t, strings.HasPrefix(line, "   -c, --concurrency int"))
	assert.Contains(t, line, "(default 10)")

	line = formatFlag(fs.Lookup("demo"))
	assert.Contains(t, line, "--demo")
	assert.NotContains(t, line, "default")
}

func TestHelpGroupsReferenceRealFlags(t *testing.T) {
	for _, g := range helpGroups {
		for _, name := range g.flags {
			assert.NotNil(t, rootCmd.Flags().Lookup(name), "help group %s lists unknown flag %s", g.title, name)
		}
	}
}

func TestSecondsValue(t *testing.T) {
	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	timeout := 8 * time.Second
	var delay time.Duration
	fs.Var(&secondsValue{target: &timeout}, "timeout", "")
	fs.Var(&secondsValue{target: &delay}, "delay", "")

	require.NoError(t, fs.Parse([]string{"--timeout", "3", "--delay", "0.5"}))
	assert.Equal(t, 3*time.Second, timeout)
	assert.Equal(t, 500*time.Millisecond, delay)

	require.NoError(t, fs.Parse([]string{"--timeout", "1500ms"}))
	assert.Equal(t, 1500*time.Millisecond, timeout)

	assert.Error(t, fs.Parse([]string{"--delay", "later"}))
	assert.Equal(t, "8s", rootCmd.Flags().Lookup("timeout").DefValue)
}
