// Package configuration parsea y aplica direcciones de configuración:
//
//	[stripe.<id>[.node.<id>].]<setting>[.<key>][=<value>]
//
// '.' y ':' son separadores equivalentes en el prefijo de la dirección; la
// clave de un mapa se toma tal cual (puede contener '.' o ':').
package configuration
