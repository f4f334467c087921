package stream

// Project is a route collection project name.
type Project string

const (
	// RouteViews publishes RIBs every 2 hours and updates every 15 minutes.
	RouteViews Project = "routeviews"
	// RIS is the RIPE NCC Routing Information Service, publishing RIBs
	// every 8 hours and updates every 5 minutes.
	RIS Project = "ris"
)

// Collector is a collector name known to the broker. Use
// Query.CollectorName for collectors missing from this catalog.
type Collector string

// RouteViews collectors.
const (
	RouteViewsAmsix     Collector = "route-views.amsix"
	RouteViewsBdix      Collector = "route-views.bdix"
	RouteViewsBknix     Collector = "route-views.bknix"
	RouteViewsChicago   Collector = "route-views.chicago"
	RouteViewsChile     Collector = "route-views.chile"
	RouteViewsEqix      Collector = "route-views.eqix"
	RouteViewsFlix      Collector = "route-views.flix"
	RouteViewsFortaleza Collector = "route-views.fortaleza"
	RouteViewsGixa      Collector = "route-views.gixa"
	RouteViewsGorex     Collector = "route-views.gorex"
	RouteViewsIsc       Collector = "route-views.isc"
	RouteViewsKixp      Collector = "route-views.kixp"
	RouteViewsLinx      Collector = "route-views.linx"
	RouteViewsMwix      Collector = "route-views.mwix"
	RouteViewsNapafrica Collector = "route-views.napafrica"
	RouteViewsNwax      Collector = "route-views.nwax"
	RouteViewsNy        Collector = "route-views.ny"
	RouteViewsPerth     Collector = "route-views.perth"
	RouteViewsPeru      Collector = "route-views.peru"
	RouteViewsPhoix     Collector = "route-views.phoix"
	RouteViewsRio       Collector = "route-views.rio"
	RouteViewsSfmix     Collector = "route-views.sfmix"
	RouteViewsSg        Collector = "route-views.sg"
	RouteViewsSoxrs     Collector = "route-views.soxrs"
	RouteViewsSydney    Collector = "route-views.sydney"
	RouteViewsTelxatl   Collector = "route-views.telxatl"
	RouteViewsUaeix     Collector = "route-views.uaeix"
	RouteViewsWide      Collector = "route-views.wide"
	RouteViews2         Collector = "route-views2"
	RouteViews2SaoPaulo Collector = "route-views2saopaulo"
	RouteViews3         Collector = "route-views3"
	RouteViews4         Collector = "route-views4"
	RouteViews5         Collector = "route-views5"
	RouteViews6         Collector = "route-views6"
)

// RIPE RIS collectors.
const (
	RISAmsterdam    Collector = "rrc00" // Amsterdam, NL (multihop, global)
	RISLondon       Collector = "rrc01" // London, GB (LINX, LONAP)
	RISAmsterdamIx  Collector = "rrc03" // Amsterdam, NL (AMS-IX, NL-IX)
	RISGeneva       Collector = "rrc04" // Geneva, CH (CIXP)
	RISVienna       Collector = "rrc05" // Vienna, AT (VIX)
	RISOtemachi     Collector = "rrc06" // Otemachi, JP (DIX-IE, JPIX)
	RISStockholm    Collector = "rrc07" // Stockholm, SE (Netnod)
	RISMilan        Collector = "rrc10" // Milan, IT (MIX)
	RISNewYork      Collector = "rrc11" // New York, US (NYIIX)
	RISFrankfurt    Collector = "rrc12" // Frankfurt, DE (DE-CIX)
	RISMoscow       Collector = "rrc13" // Moscow, RU (MSK-IX)
	RISPaloAlto     Collector = "rrc14" // Palo Alto, US (PAIX)
	RISSaoPaolo     Collector = "rrc15" // Sao Paolo, BR (PTTMetro-SP)
	RISMiami        Collector = "rrc16" // Miami, US (Equinix Miami)
	RISBarcelona    Collector = "rrc18" // Barcelona, ES (CATNIX)
	RISJohannesburg Collector = "rrc19" // Johannesburg, ZA (NAP Africa JB)
	RISZurich       Collector = "rrc20" // Zurich, CH (SwissIX)
	RISParis        Collector = "rrc21" // Paris, FR (France-IX)
	RISBucharest    Collector = "rrc22" // Bucharest, RO (Interlan)
	RISSingapore    Collector = "rrc23" // Singapore, SG (Equinix Singapore)
	RISMontevideo   Collector = "rrc24" // Montevideo, UY (multihop, LACNIC)
	RISAmsterdam2   Collector = "rrc25" // Amsterdam, NL (multihop, global)
	RISDubai        Collector = "rrc26" // Dubai, AE (UAE-IX)
)
