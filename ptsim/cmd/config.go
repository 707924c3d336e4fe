package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sarchlab/ptsim/mem/vm"
)

const defaultEnvFile = ".env"

// Environment variables that override the machine geometry.
const (
	EnvPageSize   = "PTSIM_PAGE_SIZE"
	EnvPageCount  = "PTSIM_PAGE_COUNT"
	EnvMemSize    = "PTSIM_MEM_SIZE"
	EnvPTPTOffset = "PTSIM_PTPT_OFFSET"
)

// loadSpec loads the dotenv file, if any, and builds a validated spec from
// the environment. An empty envFile means .env when it exists.
func loadSpec(envFile string) (vm.Spec, error) {
	if envFile == "" {
		if _, err := os.Stat(defaultEnvFile); err == nil {
			envFile = defaultEnvFile
		}
	}

	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil {
			return vm.Spec{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	spec, err := specFromEnv(os.LookupEnv)
	if err != nil {
		return vm.Spec{}, err
	}

	err = spec.Validate()
	if err != nil {
		return vm.Spec{}, fmt.Errorf("invalid machine configuration: %w", err)
	}

	return spec, nil
}

// specFromEnv overlays the variables found by lookup on the default spec.
// When only the page geometry is given, the memory size follows it and the
// PTPT starts right after the free map.
func specFromEnv(lookup func(string) (string, bool)) (vm.Spec, error) {
	spec := vm.Defaults()

	fields := []struct {
		name  string
		value *uint64
	}{
		{EnvPageSize, &spec.PageSize},
		{EnvPageCount, &spec.PageCount},
		{EnvMemSize, &spec.MemSize},
		{EnvPTPTOffset, &spec.PTPTOffset},
	}

	set := make(map[string]bool)

	for _, f := range fields {
		str, ok := lookup(f.name)
		if !ok || str == "" {
			continue
		}

		v, err := strconv.ParseUint(str, 0, 64)
		if err != nil {
			return vm.Spec{}, fmt.Errorf("%s: %w", f.name,
				errors.Unwrap(err))
		}

		*f.value = v
		set[f.name] = true
	}

	if !set[EnvMemSize] {
		spec.MemSize = spec.PageSize * spec.PageCount
	}

	if !set[EnvPTPTOffset] {
		spec.PTPTOffset = spec.PageCount
	}

	return spec, nil
}
