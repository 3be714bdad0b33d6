package rdf

// Namespace IRIs used across the module.
const (
	XSDNamespace  = "http://www.w3.org/2001/XMLSchema#"
	RDFNamespace  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNamespace = "http://www.w3.org/2000/01/rdf-schema#"
)

// RDFType is rdf:type.
const RDFType = RDFNamespace + "type"

// RDFLangString is the datatype of language-tagged literals.
const RDFLangString = RDFNamespace + "langString"

// XSD datatypes recognized when converting literals.
const (
	XSDString             = XSDNamespace + "string"
	XSDNormalizedString   = XSDNamespace + "normalizedString"
	XSDToken              = XSDNamespace + "token"
	XSDAnyURI             = XSDNamespace + "anyURI"
	XSDBoolean            = XSDNamespace + "boolean"
	XSDInteger            = XSDNamespace + "integer"
	XSDInt                = XSDNamespace + "int"
	XSDLong               = XSDNamespace + "long"
	XSDShort              = XSDNamespace + "short"
	XSDByte               = XSDNamespace + "byte"
	XSDNonNegativeInteger = XSDNamespace + "nonNegativeInteger"
	XSDPositiveInteger    = XSDNamespace + "positiveInteger"
	XSDNegativeInteger    = XSDNamespace + "negativeInteger"
	XSDNonPositiveInteger = XSDNamespace + "nonPositiveInteger"
	XSDUnsignedInt        = XSDNamespace + "unsignedInt"
	XSDUnsignedLong       = XSDNamespace + "unsignedLong"
	XSDUnsignedShort      = XSDNamespace + "unsignedShort"
	XSDUnsignedByte       = XSDNamespace + "unsignedByte"
	XSDFloat              = XSDNamespace + "float"
	XSDDouble             = XSDNamespace + "double"
	XSDDecimal            = XSDNamespace + "decimal"
	XSDDateTime           = XSDNamespace + "dateTime"
	XSDDate               = XSDNamespace + "date"
	XSDTime               = XSDNamespace + "time"
)
