// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-webcrypto.
//
// go-webcrypto is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.


package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

func TestStore(t *testing.T) {
	f := newFixture(t)
	chain := f.chain(t, types.ECDSAP256(), types.Ed25519(), types.ECDSAP256())

	_, err := NewStore(nil)
	assert.ErrorIs(t, err, ErrStorageRequired)

	store, err := NewStore(memory.New())
	require.NoError(t, err)

	require.NoError(t, store.SaveCertificate("leaf", chain[0]))
	require.NoError(t, store.SaveChain("leaf", chain))

	cert, err := store.Certificate("leaf")
	require.NoError(t, err)
	assert.True(t, cert.Equal(chain[0]))

	loaded, err := store.Chain("leaf")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i := range chain {
		assert.True(t, loaded[i].Equal(chain[i]))
	}

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf"}, ids)
	ids, err = store.ListChains()
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf"}, ids)

	require.NoError(t, store.Delete("leaf"))
	require.NoError(t, store.Delete("leaf"))
	_, err = store.Certificate("leaf")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.SaveCertificate("", chain[0]), ErrInvalidID)
	_, err = store.Chain("")
	assert.ErrorIs(t, err, ErrInvalidID)
}
