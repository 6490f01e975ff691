package main

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) Up(steps int) error {
	return m.Called(steps).Error(0)
}

func (m *mockMigrator) Down(steps int) error {
	return m.Called(steps).Error(0)
}

func (m *mockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func TestRunAction(t *testing.T) {
	t.Run("up applies all pending", func(t *testing.T) {
		m := new(mockMigrator)
		m.On("Up", 0).Return(nil)
		require.NoError(t, runAction(m, "up", 0, &bytes.Buffer{}))
		m.AssertExpectations(t)
	})

	t.Run("down rolls back steps", func(t *testing.T) {
		m := new(mockMigrator)
		m.On("Down", 1).Return(nil)
		require.NoError(t, runAction(m, "down", 1, &bytes.Buffer{}))
		m.AssertExpectations(t)
	})

	t.Run("version prints state", func(t *testing.T) {
		m := new(mockMigrator)
		m.On("Version").Return(uint(1), false, nil)
		var out bytes.Buffer
		require.NoError(t, runAction(m, "version", 0, &out))
		assert.Equal(t, "version 1 (dirty: false)\n", out.String())
	})

	t.Run("errors propagate", func(t *testing.T) {
		m := new(mockMigrator)
		boom := stderrors.New("dirty database")
		m.On("Up", 0).Return(boom)
		assert.ErrorIs(t, runAction(m, "up", 0, &bytes.Buffer{}), boom)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		m := new(mockMigrator)
		assert.Error(t, runAction(m, "status", 0, &bytes.Buffer{}))
		assert.Error(t, runAction(m, "up", -1, &bytes.Buffer{}))
		m.AssertNotCalled(t, "Up", mock.Anything)
	})
}
