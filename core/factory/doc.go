// Package factory builds pluggable modules from configuration. A module is
// named by a type string and carries a raw settings map that its factory
// decodes with Decode. Metrics sinks are registered and built this way:
//
//	metrics:
//	  sinks:
//	    - type: influx
//	      conf: {url: "http://influx:8086", bucket: plans}
//
// resolves to the "influx" factory with Conf {url, bucket}.
package factory
