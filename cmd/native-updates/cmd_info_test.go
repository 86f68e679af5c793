package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleInfo_IOSText(t *testing.T) {
	d, buf := newIOSDeps(t, "text", &mockLookup{info: sampleAppStoreInfo()}, nil)

	require.NoError(t, handleInfo(context.Background(), d, ""))
	out := buf.String()
	assert.Contains(t, out, "com.example.app")
	assert.Contains(t, out, "2.1.0")
	assert.Contains(t, out, "1234567890")
	assert.Contains(t, out, "yes (OS 17.2)")
	assert.Contains(t, out, "Release notes")
	assert.Contains(t, out, "Faster sync")
}

func TestHandleInfo_IOSIncompatible(t *testing.T) {
	d, buf := newIOSDeps(t, "json", &mockLookup{info: sampleAppStoreInfo()}, nil)

	require.NoError(t, handleInfo(context.Background(), d, "14.8"))
	var res infoResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	require.NotNil(t, res.AppStore)
	require.NotNil(t, res.Compatible)
	assert.False(t, *res.Compatible)
	assert.Equal(t, "14.8", res.OSVersion)
	assert.Equal(t, int64(10), res.BuildNumber)
	assert.Nil(t, res.PlayStore)
}

func TestHandleInfo_IOSWithoutHostOS(t *testing.T) {
	d, buf := newIOSDeps(t, "json", &mockLookup{info: sampleAppStoreInfo()}, nil)
	d.HostOS = func(context.Context) (string, error) { return "", errMock }

	require.NoError(t, handleInfo(context.Background(), d, ""))
	var res infoResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Nil(t, res.Compatible)
	assert.Empty(t, res.OSVersion)
}

func TestHandleInfo_Android(t *testing.T) {
	d, buf := newAndroidDeps(t, "text", fastSimConfig())

	require.NoError(t, handleInfo(context.Background(), d, ""))
	out := buf.String()
	assert.Contains(t, out, "available")
	assert.Contains(t, out, "Version code")
	assert.Contains(t, out, "11")
	assert.Contains(t, out, "3 days")
	assert.NotContains(t, out, "Release notes")
}

func TestHandleInfo_AndroidJSON(t *testing.T) {
	d, buf := newAndroidDeps(t, "json", fastSimConfig())

	require.NoError(t, handleInfo(context.Background(), d, ""))
	var res infoResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	require.NotNil(t, res.PlayStore)
	require.NotNil(t, res.PlayStore.AvailableVersionCode)
	assert.Equal(t, int64(11), *res.PlayStore.AvailableVersionCode)
	assert.Nil(t, res.AppStore)
}
