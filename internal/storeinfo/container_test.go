package storeinfo

import (
	"context"
	"testing"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/stretchr/testify/require"
)

func TestSetName(t *testing.T) {
	inbox := notify.NewInbox(0)
	c := New("بازارچه", notify.Reporter{Sink: inbox})

	require.NoError(t, c.SetName(context.Background(), "  بازارچه جدید "))
	require.Equal(t, "بازارچه جدید", c.Name())

	err := c.SetName(context.Background(), "   ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "بازارچه جدید", c.Name())

	notices := inbox.Drain()
	require.Len(t, notices, 2)
	require.Equal(t, notify.LevelInfo, notices[0].Level)
	require.Equal(t, notify.LevelError, notices[1].Level)
}
