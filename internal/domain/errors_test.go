package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Store.GetDevice", ErrNotFound, "AA:BB:CC:DD:EE:FF")
	want := "Store.GetDevice: AA:BB:CC:DD:EE:FF: not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Scanner.Initialize", ErrAdapterInit, "")
	want := "Scanner.Initialize: bluetooth adapter initialization failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Store.CleanupOldData", ErrStorage, "database is locked")
	if !errors.Is(err, ErrStorage) {
		t.Error("errors.Is should match ErrStorage")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewDomainError("Adapter.StartDiscovery", ErrAdapterCall, "hci0"))
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatal("errors.As should match *DomainError")
	}
	assert.Equal(t, "Adapter.StartDiscovery", de.Op)
	assert.ErrorIs(t, err, ErrAdapterCall)
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("noop", nil))

	err := WrapOp("config.Load", ErrConfigLoad)
	assert.ErrorIs(t, err, ErrConfigLoad)
	assert.Equal(t, "config.Load: failed to load configuration", err.Error())
}
