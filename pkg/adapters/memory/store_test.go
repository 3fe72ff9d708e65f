package memory_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunModelStoreContract(t, store)
}

func TestMemoryLibrary_Contract(t *testing.T) {
	lib := memory.NewLibrary("hiv",
		&domain.Scenario{Name: "base"},
		&domain.Scenario{Name: "cheap", ObjectUpdates: "cTreat = 10"},
	)
	contract.ScenarioLibraryContractTest(t, lib, "hiv", map[string]string{
		"base":  "",
		"cheap": "cTreat = 10",
	})
}
