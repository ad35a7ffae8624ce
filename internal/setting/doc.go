// Package setting es el catálogo estático de settings configurables.
//
// Cada setting es un registro fijo (nunca una subclase): nombre kebab-case,
// scope propio (dónde se guarda el valor), si es un mapa, default (puede
// contener placeholders como %h o %H), validador, matriz de permisos
// Operation × Scope y accesores sobre el modelo de internal/topology.
//
//	s, ok := setting.Get("node-port")
//	s.AllowsOperationAtScope(setting.OpSet, setting.ScopeNode) // true
//	err := s.Validate("70000")                                // ErrInvalidValue
package setting
