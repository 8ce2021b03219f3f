package container

// Media types an ODF package may carry in its mimetype part. A package
// whose mimetype is not in this set is rejected at open time.
const (
	MimetypeText                 = "application/vnd.oasis.opendocument.text"
	MimetypeTextTemplate         = "application/vnd.oasis.opendocument.text-template"
	MimetypeTextWeb              = "application/vnd.oasis.opendocument.text-web"
	MimetypeTextMaster           = "application/vnd.oasis.opendocument.text-master"
	MimetypeTextMasterTemplate   = "application/vnd.oasis.opendocument.text-master-template"
	MimetypeGraphics             = "application/vnd.oasis.opendocument.graphics"
	MimetypeGraphicsTemplate     = "application/vnd.oasis.opendocument.graphics-template"
	MimetypePresentation         = "application/vnd.oasis.opendocument.presentation"
	MimetypePresentationTemplate = "application/vnd.oasis.opendocument.presentation-template"
	MimetypeSpreadsheet          = "application/vnd.oasis.opendocument.spreadsheet"
	MimetypeSpreadsheetTemplate  = "application/vnd.oasis.opendocument.spreadsheet-template"
	MimetypeChart                = "application/vnd.oasis.opendocument.chart"
	MimetypeChartTemplate        = "application/vnd.oasis.opendocument.chart-template"
	MimetypeImage                = "application/vnd.oasis.opendocument.image"
	MimetypeImageTemplate        = "application/vnd.oasis.opendocument.image-template"
	MimetypeFormula              = "application/vnd.oasis.opendocument.formula"
	MimetypeFormulaTemplate      = "application/vnd.oasis.opendocument.formula-template"
	MimetypeDatabase             = "application/vnd.oasis.opendocument.database"
)

var knownMimetypes = map[string]struct{}{
	MimetypeText:                 {},
	MimetypeTextTemplate:         {},
	MimetypeTextWeb:              {},
	MimetypeTextMaster:           {},
	MimetypeTextMasterTemplate:   {},
	MimetypeGraphics:             {},
	MimetypeGraphicsTemplate:     {},
	MimetypePresentation:         {},
	MimetypePresentationTemplate: {},
	MimetypeSpreadsheet:          {},
	MimetypeSpreadsheetTemplate:  {},
	MimetypeChart:                {},
	MimetypeChartTemplate:        {},
	MimetypeImage:                {},
	MimetypeImageTemplate:        {},
	MimetypeFormula:              {},
	MimetypeFormulaTemplate:      {},
	MimetypeDatabase:             {},
}

// KnownMimetype reports whether m is one of the recognized ODF media
// types.
func KnownMimetype(m string) bool {
	_, ok := knownMimetypes[m]
	return ok
}
