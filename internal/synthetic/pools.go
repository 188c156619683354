package synthetic

import (
	"fmt"
	"math/rand/v2"
)

var (
	variableNames = []string{"LocalVar0", "LocalVar1", "GlobalVar", "TempVar", "ConfigVar", "StatusFlag"}
	programNames  = []string{"program0", "main_program", "control_loop", "init_sequence"}
	buildDirs     = []string{"tmpMngQvj", "tmpL3UKDb", "tmpXkz9Pw", "tmpQrs4Tu"}
	attributes    = []string{"text", "value", "content", "data"}
	cFiles        = []string{"POUS.c", "Config0.c", "Res0.c", "plc_debugger.c"}
	identifiers   = []string{"MotorSpeed", "ValveOpen", "PumpCounter", "SetPoint", "AlarmLatch"}
	headers       = []string{"iec_std_lib.h", "accessor.h", "POUS.h", "beremiz.h"}
)

// Values are the placeholder values a template renders with. Every field is
// drawn for every case, in declaration order, so adding a template never
// shifts the values of existing ones.
type Values struct {
	Timestamp  string
	XMLLine    int
	BuildDir   string
	PID        int
	ErrorLine  int
	TraceLine  int
	Program    string
	Var1       string
	Var2       string
	Attribute  string
	CFile      string
	Identifier string
	Header     string
}

func drawValues(rng *rand.Rand, errorLines [2]int) Values {
	return Values{
		Timestamp:  fmt.Sprintf("%02d:%02d:%02d", between(rng, 10, 23), between(rng, 0, 59), between(rng, 0, 59)),
		XMLLine:    between(rng, 20, 100),
		BuildDir:   choose(rng, buildDirs),
		PID:        between(rng, 100, 999),
		ErrorLine:  between(rng, errorLines[0], errorLines[1]),
		TraceLine:  between(rng, 100, 600),
		Program:    choose(rng, programNames),
		Var1:       choose(rng, variableNames),
		Var2:       choose(rng, variableNames),
		Attribute:  choose(rng, attributes),
		CFile:      choose(rng, cFiles),
		Identifier: choose(rng, identifiers),
		Header:     choose(rng, headers),
	}
}

// between returns a value in [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

func choose(rng *rand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}
