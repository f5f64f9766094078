//go:build mvvmdebug

package viewmodel

const debugBuild = true
