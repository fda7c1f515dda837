package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldera-labs/resolvd/internal/model"
)

func TestDetect(t *testing.T) {
	d := Detect()
	assert.Equal(t, runtime.GOOS, d.OS)
	assert.Equal(t, runtime.GOARCH, d.Arch)
	assert.NotEmpty(t, d.RuntimeVersion)
	require.NoError(t, d.Validate())
}

func TestParseMode(t *testing.T) {
	mode, ok, err := ParseMode("remote")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ModeRemote, mode)

	mode, ok, err = ParseMode(" Local ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ModeLocal, mode)

	_, ok, err = ParseMode("")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseMode("hybrid")
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

func TestEffectiveLocalIgnoresSupplied(t *testing.T) {
	p := New(ModeLocal)

	supplied := &model.PlatformDescriptor{OS: "windows", Arch: "amd64"}
	got, err := p.Effective("", supplied)
	require.NoError(t, err)
	assert.Equal(t, p.Host(), got)
}

func TestEffectiveRemoteRequiresDescriptor(t *testing.T) {
	p := New(ModeRemote)

	_, err := p.Effective("", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = p.Effective("", &model.PlatformDescriptor{OS: "linux"})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	want := model.PlatformDescriptor{OS: "linux", Arch: "aarch64", Platform: "linux-aarch64"}
	got, err := p.Effective("", &want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEffectiveModeOverride(t *testing.T) {
	p := New(ModeLocal)

	// Per-request override flips a local-mode process into remote handling.
	_, err := p.Effective("remote", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	want := model.PlatformDescriptor{OS: "darwin", Arch: "arm64"}
	got, err := p.Effective("remote", &want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, _, perr := ParseMode("bogus")
	require.Error(t, perr)
	_, err = p.Effective("bogus", nil)
	require.Error(t, err)
}

func TestDescriptorContextRoundTrip(t *testing.T) {
	d := model.PlatformDescriptor{OS: "linux", Arch: "x86_64"}
	ctx := WithDescriptor(context.Background(), d)

	got, ok := DescriptorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, d, got)

	_, ok = DescriptorFromContext(context.Background())
	assert.False(t, ok)
}
