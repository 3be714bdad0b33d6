package vocabulary

// Standard namespace IRIs.
const (
	RDF    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS   = "http://www.w3.org/2000/01/rdf-schema#"
	XSD    = "http://www.w3.org/2001/XMLSchema#"
	OWL    = "http://www.w3.org/2002/07/owl#"
	SKOS   = "http://www.w3.org/2004/02/skos/core#"
	Schema = "http://schema.org/"
	FOAF   = "http://xmlns.com/foaf/0.1/"
	DCT    = "http://purl.org/dc/terms/"
)

// Common predicate IRIs.
const (
	// RdfType links an entity to its class.
	RdfType = RDF + "type"

	// RdfsLabel provides a human-readable name for a resource.
	RdfsLabel = RDFS + "label"

	// RdfsSubClassOf declares a class hierarchy edge.
	RdfsSubClassOf = RDFS + "subClassOf"

	// OwlSameAs indicates that two IRIs refer to the same entity.
	OwlSameAs = OWL + "sameAs"
)

// StandardPrefixes returns a fresh table with the well-known prefixes.
// Catalog prefixes are merged over it.
func StandardPrefixes() Prefixes {
	return Prefixes{
		"rdf":    RDF,
		"rdfs":   RDFS,
		"xsd":    XSD,
		"owl":    OWL,
		"skos":   SKOS,
		"schema": Schema,
		"foaf":   FOAF,
		"dct":    DCT,
	}
}
