// Package config loads depsentry configuration from local and global YAML
// files and from the environment. It is internal; CLI code maps flags and
// files into engine configuration.
package config
