package sim

import (
	"testing"

	"github.com/buckleypaul/vboard/internal/testfw"
)

func TestMain(m *testing.M) {
	testfw.Main(m)
}
