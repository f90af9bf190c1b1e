package selector

// Universal lists per-field heuristics tried after the marketplace's own
// hints, ordered from most to least stable.
var Universal = map[string][]string{
	FieldContainer: {
		"[data-component-type='s-search-result']",
		"[data-id]",
		"[data-product-id]",
		"[data-testid*='product']",
		"li.product-item",
		"div.product-item",
		"article.product",
		"[class*='ProductCard']",
		"[class*='product-card']",
		"[class*='ProductModule']",
		"[class*='product-tile']",
		"[class*='item-card']",
		"[class*='search-result']",
		"[class*='SearchResult']",
		"[class*='product-listing']",
		"[class*='productCard']",
		"[class*='product-box']",
		"[class*='plp-card']",
		"li[class*='product']",
		"div[class*='product'][class*='list']",
		"div[class*='product'][class*='grid']",
	},
	FieldTitle: {
		"h2 .a-text-normal", "h2 a", "h3 a", "h2 span", "h3 span",
		"[class*='title'] a", "[class*='Title'] a",
		"[class*='name'] a", "[class*='Name'] a",
		"[class*='product-title']", "[class*='ProductTitle']",
		"[class*='product-name']", "[class*='ProductName']",
		"a[class*='title']", "a[class*='name']",
		"[class*='productTitle']",
	},
	FieldPrice: {
		".a-price .a-offscreen",
		"[class*='discountedPrice']", "[class*='DiscountedPrice']",
		"[class*='selling-price']", "[class*='SellingPrice']",
		"[class*='final-price']", "[class*='FinalPrice']",
		"[class*='sp__price']",
		"span[class*='Price']", "div[class*='Price']",
		"[class*='price']", "[class*='amount']",
	},
	FieldOriginalPrice: {
		".a-text-price .a-offscreen",
		"[class*='originalPrice']", "[class*='OriginalPrice']",
		"[class*='old-price']", "[class*='OldPrice']",
		"[class*='mrp']", "[class*='MRP']",
		"[class*='strikethrough']",
		"del", "s",
	},
	FieldRating: {
		".a-icon-star-small .a-icon-alt", ".a-icon-star .a-icon-alt",
		"[aria-label*='out of 5']", "[aria-label*='stars']",
		"[class*='rating'][class*='value']", "[class*='Rating'][class*='Value']",
		"[class*='rating']",
	},
	FieldReviewCount: {
		"[aria-label*='ratings'] .a-size-small",
		"[class*='review'][class*='count']", "[class*='ReviewCount']",
		"[class*='rating-count']",
		"span[class*='review']",
		"[class*='ratings']",
	},
	FieldListingURL: {
		"h2 a", "a[href*='/dp/']", "a[href*='/p/']",
		"a[href*='/product']", "a[href*='/buy']",
		"a[class*='product']", "a[class*='title']",
		"a[href*='/pd/']", "a[href*='/item/']",
	},
	FieldDelivery: {
		"[data-cy='delivery-recipe-content'] .a-text-bold",
		"[class*='delivery']", "[class*='Delivery']",
		"[class*='dispatch']", "[class*='shipping']",
		"[class*='arrival']", "[class*='estimated']",
		"[class*='deliveryTime']",
	},
	FieldShipping: {
		"[class*='shipping']", "[class*='Shipping']",
		"[class*='free-shipping']", "[class*='delivery-fee']",
	},
	FieldSeller: {
		"a[href*='seller']", "[class*='seller']",
		"[class*='Seller']", "[class*='sold-by']",
	},
	FieldImage: {
		"img.s-image", "img[class*='product']", "img[src*='product']", "img",
	},
}
