package visa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQueryIdentity(t *testing.T) {
	require := require.New(t)

	t.Run("writes the query and trims the reply", func(t *testing.T) {
		s := NewMockSession()
		s.On("Write", []byte("*IDN?\n")).Return(6, nil)
		s.On("Read", mock.Anything).Run(func(args mock.Arguments) {
			copy(args.Get(0).([]byte), "TEKTRONIX,MSO54,C012345,1.20.6\n")
		}).Return(31, nil)

		identity, err := QueryIdentity(s)
		require.NoError(err)
		require.Equal("TEKTRONIX,MSO54,C012345,1.20.6", identity)
		s.AssertExpectations(t)
	})

	t.Run("write failure", func(t *testing.T) {
		s := NewMockSession()
		s.On("Write", mock.Anything).Return(0, errors.New("pipe broken"))

		_, err := QueryIdentity(s)
		require.Error(err)
		require.Contains(err.Error(), "write identity query")
		s.AssertNotCalled(t, "Read", mock.Anything)
	})

	t.Run("read failure", func(t *testing.T) {
		s := NewMockSession()
		s.On("Write", mock.Anything).Return(6, nil)
		s.On("Read", mock.Anything).Return(0, errors.New("timeout"))

		_, err := QueryIdentity(s)
		require.Error(err)
		require.Contains(err.Error(), "read identity reply")
	})
}
