package main

import (
	"github.com/spf13/pflag"
)

// bindFlag binds a flag to a config key. Unset flags keep the file, env or
// default value.
func bindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		panic("missing flag for " + key)
	}
	_ = v.BindPFlag(key, flag)
}
