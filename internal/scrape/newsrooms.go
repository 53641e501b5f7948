package scrape

import "sort"

// Newsrooms maps each state code to its DOT newsroom.
var Newsrooms = map[string]Newsroom{
	"AL": {Name: "Alabama DOT", URL: "https://www.dot.state.al.us/news/"},
	"AK": {Name: "Alaska DOT", URL: "https://dot.alaska.gov/news.shtml"},
	"AZ": {Name: "Arizona DOT", URL: "https://azdot.gov/news", RSS: "https://azdot.gov/news/rss.xml"},
	"AR": {Name: "Arkansas DOT", URL: "https://www.ardot.gov/news/"},
	"CA": {Name: "California DOT (Caltrans)", URL: "https://dot.ca.gov/news-releases", RSS: "https://dot.ca.gov/news-releases/rss"},
	"CO": {Name: "Colorado DOT", URL: "https://www.codot.gov/news"},
	"CT": {Name: "Connecticut DOT", URL: "https://portal.ct.gov/DOT/News"},
	"DE": {Name: "Delaware DOT", URL: "https://deldot.gov/News/"},
	"FL": {Name: "Florida DOT", URL: "https://www.fdot.gov/info/news.shtm"},
	"GA": {Name: "Georgia DOT", URL: "https://www.dot.ga.gov/news", RSS: "https://www.dot.ga.gov/news/rss"},
	"HI": {Name: "Hawaii DOT", URL: "https://hidot.hawaii.gov/highways/news/"},
	"ID": {Name: "Idaho Transportation Department", URL: "https://itd.idaho.gov/news/"},
	"IL": {Name: "Illinois DOT", URL: "https://idot.illinois.gov/about-idot/news-room.html"},
	"IN": {Name: "Indiana DOT", URL: "https://www.in.gov/indot/news/"},
	"IA": {Name: "Iowa DOT", URL: "https://iowadot.gov/news"},
	"KS": {Name: "Kansas DOT", URL: "https://www.ksdot.org/news.asp"},
	"KY": {Name: "Kentucky Transportation Cabinet", URL: "https://transportation.ky.gov/Pages/News.aspx"},
	"LA": {Name: "Louisiana DOTD", URL: "https://wwwsp.dotd.la.gov/Inside_LaDOTD/Pages/News.aspx"},
	"ME": {Name: "Maine DOT", URL: "https://www.maine.gov/mdot/news/"},
	"MD": {Name: "Maryland DOT", URL: "https://www.mdot.maryland.gov/tso/pages/Index.aspx?PageId=24"},
	"MA": {Name: "Massachusetts DOT", URL: "https://www.mass.gov/orgs/massachusetts-department-of-transportation/news"},
	"MI": {Name: "Michigan DOT", URL: "https://www.michigan.gov/mdot/news"},
	"MN": {Name: "Minnesota DOT", URL: "https://www.dot.state.mn.us/newsrels/"},
	"MS": {Name: "Mississippi DOT", URL: "https://mdot.ms.gov/news/"},
	"MO": {Name: "Missouri DOT", URL: "https://www.modot.org/news"},
	"MT": {Name: "Montana DOT", URL: "https://www.mdt.mt.gov/news/"},
	"NE": {Name: "Nebraska DOT", URL: "https://dot.nebraska.gov/news-media/news/"},
	"NV": {Name: "Nevada DOT", URL: "https://www.dot.nv.gov/news"},
	"NH": {Name: "New Hampshire DOT", URL: "https://www.nh.gov/dot/news/"},
	"NJ": {Name: "New Jersey DOT", URL: "https://www.state.nj.us/transportation/about/press/"},
	"NM": {Name: "New Mexico DOT", URL: "https://www.dot.nm.gov/news/"},
	"NY": {Name: "New York DOT", URL: "https://www.dot.ny.gov/news"},
	"NC": {Name: "North Carolina DOT", URL: "https://www.ncdot.gov/news/"},
	"ND": {Name: "North Dakota DOT", URL: "https://www.dot.nd.gov/news/"},
	"OH": {Name: "Ohio DOT", URL: "https://www.transportation.ohio.gov/about-us/news"},
	"OK": {Name: "Oklahoma DOT", URL: "https://oklahoma.gov/odot/news.html"},
	"OR": {Name: "Oregon DOT", URL: "https://www.oregon.gov/odot/Pages/news.aspx"},
	"PA": {Name: "Pennsylvania DOT", URL: "https://www.penndot.pa.gov/pages/all-news.aspx"},
	"RI": {Name: "Rhode Island DOT", URL: "https://www.dot.ri.gov/news/"},
	"SC": {Name: "South Carolina DOT", URL: "https://www.scdot.org/news/"},
	"SD": {Name: "South Dakota DOT", URL: "https://dot.sd.gov/news"},
	"TN": {Name: "Tennessee DOT", URL: "https://www.tn.gov/tdot/news.html"},
	"TX": {Name: "Texas DOT", URL: "https://www.txdot.gov/news.html"},
	"UT": {Name: "Utah DOT", URL: "https://www.udot.utah.gov/connect/news/"},
	"VT": {Name: "Vermont DOT", URL: "https://vtrans.vermont.gov/news"},
	"VA": {Name: "Virginia DOT", URL: "https://www.virginiadot.org/newsroom/"},
	"WA": {Name: "Washington DOT", URL: "https://wsdot.wa.gov/news"},
	"WV": {Name: "West Virginia DOT", URL: "https://transportation.wv.gov/news/Pages/default.aspx"},
	"WI": {Name: "Wisconsin DOT", URL: "https://wisconsindot.gov/Pages/about-wisdot/newsroom/default.aspx"},
	"WY": {Name: "Wyoming DOT", URL: "https://www.dot.state.wy.us/news"},
}

// NewsroomCodes returns every state code with a newsroom, sorted.
func NewsroomCodes() []string {
	codes := make([]string, 0, len(Newsrooms))
	for code := range Newsrooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
