package plugins

import (
	csvplugin "github.com/ArionMiles/spendlog/pkg/plugins/writers/csv"
	jsonplugin "github.com/ArionMiles/spendlog/pkg/plugins/writers/json"
	postgresplugin "github.com/ArionMiles/spendlog/pkg/plugins/writers/postgres"
	sheetsplugin "github.com/ArionMiles/spendlog/pkg/plugins/writers/sheets"
	sqliteplugin "github.com/ArionMiles/spendlog/pkg/plugins/writers/sqlite"
)

// Builtin returns a registry with every bundled writer plugin registered.
func Builtin() *Registry {
	r := NewRegistry()
	for _, p := range []WriterPlugin{
		&csvplugin.Plugin{},
		&jsonplugin.Plugin{},
		&postgresplugin.Plugin{},
		&sheetsplugin.Plugin{},
		&sqliteplugin.Plugin{},
	} {
		// Names are distinct, so registration cannot fail.
		_ = r.RegisterWriter(p)
	}
	return r
}
