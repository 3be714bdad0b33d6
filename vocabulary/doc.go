// Package vocabulary holds the namespace and datatype knowledge shared by the
// catalog, the schema synthesizer and the resolver.
//
// # Prefixes
//
// Catalog identifiers are written in prefixed form ("ex:Person"). A Prefixes
// table expands them to full IRIs and compacts IRIs back:
//
//	p := vocabulary.Prefixes{"ex": "http://example.org/"}
//	p.ExtendURI("ex:Person")                   // "http://example.org/Person"
//	p.CompactURI("http://example.org/Person")  // "ex:Person"
//
// Identifiers with an unknown prefix, and full IRIs, are returned unchanged.
//
// # Datatypes
//
// Every literal datatype maps to one query-language scalar. The built-in table
// covers the XSD datatypes; additional datatypes can be registered at startup:
//
//	vocabulary.RegisterDatatype("http://example.org/celsius",
//	    vocabulary.WithScalar(vocabulary.ScalarFloat),
//	    vocabulary.WithDescription("temperature in degrees Celsius"))
//
// Unknown datatypes fall back to ScalarString.
package vocabulary
