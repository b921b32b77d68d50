// Package configs provides embedded configuration templates for flowcheck.
//
// Templates are embedded at build time with //go:embed so they are
// available in every distribution, including source builds. To modify a
// template, edit the .yaml file in this directory and rebuild.
//
// Configuration hierarchy (see internal/config.Load):
//  1. Hardcoded defaults (internal/config.NewConfig)
//  2. Project config (.flowcheck.yaml)
//  3. Environment variables (FLOWCHECK_*)
package configs

import _ "embed"

// ProjectConfigTemplate is the template for project-level configuration.
// Created by `flowcheck init` at .flowcheck.yaml in the project root.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
