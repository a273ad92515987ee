// Package exporter writes data products as downloadable files.
//
// CSVPresenter writes the Top-N table with a UTF-8 BOM so that Excel
// recognises the encoding. XLSXPresenter writes a workbook with one sheet
// per data product. Both satisfy presentation.Presenter and are looked up
// by format name through a presentation.Registry:
//
//	registry := presentation.NewRegistry()
//	exporter.RegisterAll(registry, logger)
//	p, _ := registry.Get("xlsx")
//	err := p.Present(ctx, w, products)
package exporter
