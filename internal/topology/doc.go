// Package topology contiene el modelo en memoria del cluster: Cluster → Stripe → Node.
//
// Los IDs de stripe y de nodo son posicionales (1-indexados, contiguos desde 1).
// Los valores de scope cluster son la única fuente de verdad; los valores de
// scope nodo se guardan en cada Node.
//
// El modelo es mutable y NO es seguro para uso concurrente: quien lo comparte
// entre goroutines (ver internal/manager) debe clonar con Clone() y reemplazar
// en bloque, nunca mutar una instancia publicada.
package topology
