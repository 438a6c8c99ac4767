package config

import (
	"fmt"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

// Profile is an impairment profile loaded from a Lua file. The file is
// executed and must return a table with optional `near` and `far` tables:
//
//	return {
//	    near = { drop = 30, delay = 50, delay_min = 100, delay_max = 500 },
//	    far  = { drop = 10 },
//	}
//
// Absent fields stay zero (no impairment).
type Profile struct {
	Near PolicySpec
	Far  PolicySpec
}

// LoadProfile executes the Lua file at path and maps the returned table
// onto a Profile.
func LoadProfile(path string) (*Profile, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	table, ok := L.Get(-1).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("profile %s: file did not return a table", path)
	}

	var p Profile
	if err := gluamapper.Map(table, &p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	if err := p.Near.validate("near"); err != nil {
		return nil, err
	}
	if err := p.Far.validate("far"); err != nil {
		return nil, err
	}
	return &p, nil
}
