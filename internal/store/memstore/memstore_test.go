package memstore

import (
	"testing"

	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}
